package rssi

// LocalConnID is the 32-bit connection id this side advertises in its SYN.
// The reference implementation uses a single fixed id rather than
// generating one per connection attempt; callers that need to tell
// connection attempts apart rely on the session UUID logged at
// construction, not this wire-level field.
const LocalConnID uint32 = 0x12345678
