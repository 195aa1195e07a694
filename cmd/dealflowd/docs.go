package main

//go:generate swag init -g cmd/dealflowd/main.go -o docs

// @title           Dealflow Pipeline API
// @version         0.1.0
// @description     Sales-pipeline workflow engine: stages, deals, atomic moves, derived metrics, and a change feed.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
