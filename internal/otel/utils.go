package otel

import (
	otelPkg "github.com/indigo423/kuwaiba-sub029/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ReadBytesKey  = attribute.Key("http.read_bytes")  // if anything was read from the request body, the total number of bytes read
	ReadErrorKey  = attribute.Key("http.read_error")  // If an error occurred while reading a request, the string of the error (io.EOF is not recorded)
	WroteBytesKey = attribute.Key("http.wrote_bytes") // if anything was written to the response writer, the total number of bytes written
	WriteErrorKey = attribute.Key("http.write_error") // if an error occurred while writing a reply, the string of the error (io.EOF is not recorded)

	CorrelationIdKey = attribute.Key(otelPkg.AttributeCorrelationId)
)

// used by middleware to create context key for configured transfer headers
type TransferHeaderKey string
