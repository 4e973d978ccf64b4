// Package tools holds the tool catalog and the parameter binder.
//
// # Registry
//
// Tools are registered explicitly at startup, one call per tool:
//
//	reg := tools.NewRegistry(logger)
//	reg.MustRegister(tools.ToolDefinition{
//	    Name:        "echo",
//	    Description: "Echo a message back",
//	    Parameters: []tools.ParameterSpec{
//	        {Name: "msg", Type: tools.TypeString, Required: true},
//	    },
//	    Handler: func(ctx context.Context, args tools.Args) (any, error) {
//	        return args.String("msg"), nil
//	    },
//	})
//	reg.Freeze()
//
// After Freeze the registry is read-only. List returns tools in registration
// order; Catalog renders the JSON Schema view used by list_tools.
//
// # Binding
//
// Bind checks a raw argument map against a definition. Missing required
// parameters produce *MissingParameterError, values that cannot be coerced to
// the declared type produce *TypeMismatchError, and unknown keys are ignored.
package tools
