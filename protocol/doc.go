// Package protocol implements the RFC 6455 wire layer of the relay: frame
// encoding/decoding with masking and extended lengths, and the HTTP upgrade
// handshake in both server and client roles.
//
// The codec is stream-oriented: DecodeFrameFromBytes distinguishes an
// incomplete frame (wait for more bytes) from a malformed one, so callers can
// loop over a growing receive buffer that holds several frames or a frame
// split across TCP reads.
package protocol
