// Package gemini implements relay.Sender using the Google Gemini API.
//
// The conversation history is sent as generate-content contents and every
// streamed chunk is delivered as one payload carrying the chunk's text.
package gemini

const defaultModel = "gemini-3.1-pro-preview"
