// Package inbound classifies raw events, validates application events and
// routes them to a fixed set of typed handlers.
//
// Storage notifications are recognised by a top-level Records array and only
// the first record is consumed. Everything else is treated as an application
// event and must carry source, type and payload.
package inbound
