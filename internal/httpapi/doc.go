// Package httpapi exposes the lending services and the catalog over HTTP.
//
// Every response body uses the same envelope: {"status":"success","data":...} or
// {"status":"error","code":...,"message":...,"requestId":...}.
package httpapi
