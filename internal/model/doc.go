// Package model defines the provider-agnostic request, response, and content
// types shared by the HTTP layer and the provider adapters.
package model
