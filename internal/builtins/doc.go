// Package builtins provides the tools toolgate registers at startup.
//
// # Tools
//
//   - get_hello: greeting string
//   - get_data(dataType, filter?): formatted data response
//   - process_text(content, operation): uppercase, lowercase, reverse,
//     word_count, markdown (HTML via goldmark), digest (BLAKE2b-256 hex)
//   - calculate(num1, num2, operation): add, subtract, multiply, divide
//   - get_system_info(infoType): status, runtime, uptime, sessions, invocations
//   - validate_data(data, rules): comma-separated rules required, json, yaml,
//     email, max_length=N, min_length=N; returns {valid, rules, violations}
//   - list_tools: the registry catalog with input schemas
//
// Unsupported operations, division by zero, and unknown rules are handler
// errors, which callers see as HandlerExecutionError.
//
// # Registration
//
// Registration is explicit and happens once, before the registry is frozen:
//
//	reg := tools.NewRegistry(logger)
//	if err := builtins.Register(reg, builtins.Deps{Version: version}); err != nil {
//	    return err
//	}
//	reg.Freeze()
package builtins
