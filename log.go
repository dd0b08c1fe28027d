package httpauth

// traceId identifies this package's trace events to github.com/jimrobinson/trace.
var traceId = "github.com/jimrobinson/httpauth"
