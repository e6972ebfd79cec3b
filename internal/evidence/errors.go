package evidence

import "errors"

// ErrNoFingerprintRepo is returned by ComputeFingerprint callers that
// require a git repository but found none; ComputeFingerprint itself never
// returns this, instead falling back to the deterministic empty fingerprint
// per spec §4.10 ("non-git contexts").
var ErrNoFingerprintRepo = errors.New("evidence: not a git repository")

// ErrSealKeyMissing reports that no HMAC key is configured (no
// EDISON_TDD_HMAC_KEY and none passed explicitly). No function in this
// package returns it; an unset key makes WriteCommandEvidence skip sealing.
var ErrSealKeyMissing = errors.New("evidence: no HMAC key configured")
