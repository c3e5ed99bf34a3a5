// Package ocigenai adapts the provider-agnostic types in [ai] to the OCI
// Generative AI inference API.
//
// Every model id resolves to a [ModelFamily] by vendor prefix. The family
// picks the wire dialect for both directions: GENERIC and LLAMA models use a
// messages array of typed content blocks, Cohere models use a single
// flattened message with a preamble and chat history. Finish reasons are
// normalized through a table per family.
//
// The adapter never talks HTTP itself; it hands a complete [WireRequest] to an
// [Invoker]. [HTTPInvoker] is the default implementation and leaves request
// signing to the injected *http.Client.
//
//	invoker := ocigenai.NewHTTPInvoker("us-chicago-1", ocigenai.WithHTTPClient(signingClient))
//	provider := ocigenai.New(invoker, ocigenai.WithCompartmentID(compartmentID))
//
//	response, err := provider.SendMessage(ctx, ai.ChatRequest{
//	    Model:    "meta.llama-3.3-70b-instruct",
//	    Messages: []ai.Message{ai.NewTextMessage(ai.RoleUser, "Hello")},
//	})
package ocigenai
