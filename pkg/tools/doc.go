// Package tools exposes gateway operations as tools an MCP client can call.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/tradfri/pkg/tools/toolbox] — Tool type and ToolBox registry
//   - [github.com/germanamz/tradfri/pkg/tools/devicetools] — list, get, power and temperature tools bound to a gateway session
//   - [github.com/germanamz/tradfri/pkg/tools/mcpserver] — serves a ToolBox over stdio with the official MCP Go SDK
package tools
