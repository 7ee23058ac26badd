// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It translates the REST surface used by the web
// client and the chat bot into calls on the account, category and task
// services.
package api
