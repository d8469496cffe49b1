// Package search is the boundary to the external web search provider.
//
// The model requests searches through the single web_search function tool;
// the client runs each query over HTTP JSON with bounded retries. Exhausted
// retries are reported to the caller, which degrades to an in-band error
// payload rather than failing the conversation turn.
package search
