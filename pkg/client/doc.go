// Package client is a Go client for the prism-gateway streaming API.
//
// Stream delivers parsed server-sent events to a callback as they arrive;
// Complete consumes the whole stream and returns the assembled text and
// usage. BuildUserMessage bundles a text prompt with local image files as
// base64 data-URL parts.
//
//	c := client.New("http://127.0.0.1:8000")
//	msg, _ := client.BuildUserMessage("describe this", "photo.png")
//	result, err := c.Complete(ctx, &client.Request{
//	    Model: "openai:gpt-5-nano",
//	    Input: []client.Message{msg},
//	})
package client
