// Package stdio serves tool invocations over a newline-delimited JSON pipe.
//
// Each line on the input is one request:
//
//	{"requestId": "r1", "toolName": "calculate", "arguments": {"num1": 2, "num2": 3, "operation": "add"}}
//
// and each line on the output is the matching response:
//
//	{"requestId": "r1", "toolName": "calculate", "result": 5}
//
// The transport is strictly sequential: the next line is not read until the
// previous response has been written and flushed. Stdout carries nothing but
// response frames; logs belong on stderr.
package stdio
