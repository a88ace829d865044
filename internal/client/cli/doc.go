// Package cli implements the interactive gophauth client.
//
// The REPL reads one command per line and dispatches it to App, which
// prompts for whatever the command needs (passwords are read without echo)
// and calls the HTTP API through internal/client/client.
package cli
