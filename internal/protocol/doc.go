// Package protocol implements the Frame Codec.
//
// Every frame on the wire is a single JSON text message:
//
//	{"type": "...", "payload": ..., "timestamp": "...", "user_id": 1, "mission_id": 2, "room": "...", "message_id": "..."}
//
// Only "type" is required. The codec never interprets the payload; callers
// narrow it to a concrete shape with DecodePayload once they know the type.
package protocol
