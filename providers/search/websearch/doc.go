// Package websearch is the client of the self-hosted search service.
//
// The service may run at one of several addresses (container name, host
// port, localhost). [Client] probes every candidate's /health endpoint in
// parallel and uses the first one answering {"status":"ok"}. The chosen
// endpoint is cached until a request to it fails at the transport level.
package websearch
