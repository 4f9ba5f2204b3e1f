// Package `chatsrv` implements supervised chat relay over TCP.
//
// Clients connect with any line-oriented TCP tool, for example:
//
//	nc localhost 8000
//
// The first line sent is the name of the client, every next line is relayed to all other clients.
//
// To compile chat relay locally, run from package directory:
//
//	go install .
//
// Or quickly launch relay with command:
//
//	go run . -v 1 localhost:8000
package main
