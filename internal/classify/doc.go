// Package classify extracts meeting intent from email text using the
// Gemini API with a structured JSON response schema.
//
// The classifier answers one question: does this email suggest a
// meeting, and if so, what topic, attendees and candidate times does it
// mention? The extracted times are raw strings for a human or a
// downstream caller to resolve; turning "next Tuesday" into an instant
// is out of scope here.
package classify
