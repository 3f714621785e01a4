// Package provider contains the upstream language-model adapters.
//
// Each adapter implements Provider: one normalized request in, one normalized
// response or a typed error out. Adapters never retry and never translate
// failures themselves; the gateway layer maps *Error and *NotConfiguredError
// into the client-facing taxonomy.
//
// The OpenAI adapter additionally implements StreamingProvider, the optional
// capability for native incremental delivery. Callers detect it with a type
// assertion:
//
//	if streamer, ok := p.(provider.StreamingProvider); ok {
//	    stream, err := streamer.Stream(ctx, req, traceID, opts)
//	    ...
//	}
//
// Adapters are registered in a Registry keyed by lower-cased name. The four
// built-ins are echo, openai, gemini, and claude.
package provider
