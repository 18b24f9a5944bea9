// Package wsproto implements the wire-level pieces of RFC 6455 needed by a
// loopback WebSocket server: frame encoding/decoding and the HTTP/1.1
// upgrade handshake. It has no knowledge of connection lifecycle, client
// registries, or JSON-RPC; callers feed it bytes and get frames back.
//
// Client-to-server frames MUST be masked; this package fails the
// connection (ErrUnmaskedFrame) on an unmasked client frame rather than
// silently accepting it, per RFC 6455 §5.1. Server-to-client frames are
// always emitted unmasked. Extensions (RSV bits) and fragmentation
// (continuation frames) are not supported: a set RSV bit is a
// decode-time error for the caller to map to close code 1002, while a
// continuation frame decodes normally and is left for the caller to
// reject with close code 1003.
package wsproto

/*
   WebSocket Frame Format (RFC 6455):

   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
  +-+-+-+-+-------+-+-------------+-------------------------------+
  |F|R|R|R| opcode|M| Payload len |    Extended payload length    |
  |I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
  |N|V|V|V|       |S|             |   (if payload len==126/127)   |
  | |1|2|3|       |K|             |                               |
  +-+-+-+-+-------+-+-------------+-------------------------------+
  |     Extended payload length continued, if payload len == 127  |
  +---------------------------------------------------------------+
  |                               | Masking-key, if MASK set to 1 |
  +-------------------------------+-------------------------------+
  | Masking-key (continued)       |          Payload Data         |
  +-------------------------------+-------------------------------+
  |                     Payload Data continued ...                |
  +---------------------------------------------------------------+
  |                     Payload Data continued ...                |
  +---------------------------------------------------------------+
*/
