// Package gmail provides a client for interacting with the Gmail API.
//
// It is the mail collaborator of the scheduling flow: it lists recent
// inbox messages, extracts plain-text bodies for the classifier, and
// sends threaded replies carrying the suggested meeting slots.
package gmail
