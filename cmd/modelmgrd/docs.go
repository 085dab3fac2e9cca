package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/modelmgrd/docs.go`.
//
// @title           modelmgrd API
// @version         1.0
// @description     HTTP API for budgeted local LLM lifecycle management and inference.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
