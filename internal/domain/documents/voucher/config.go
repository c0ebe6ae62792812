package voucher

import "gatepass/pkg/sequence"

// NumberConfig defines the voucher numbering format (BS00001, BS00002, ...).
// Exit vouchers are primary warehouse documents: numbers come from the atomic
// counter and must never be reused.
var NumberConfig = sequence.DefaultConfig("BS")
