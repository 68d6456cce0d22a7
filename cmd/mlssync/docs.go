package main

//go:generate swag init -g cmd/mlssync/docs.go -o docs --parseInternal

// @title           MLS Sync API
// @version         0.1.0
// @description     Incremental MLS replication: sync triggers, cursors, run audit and read access to synced listings.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
