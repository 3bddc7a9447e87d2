// Package logx configures toastd's structured logging.
//
// logx.Logger wraps zerolog so components log with typed fields
// (logx.String, logx.Int, logx.Err, ...). Console output stays short and
// readable; file output is JSON lines. A Service can swap outputs and level at
// runtime, which config hot reload uses.
package logx
