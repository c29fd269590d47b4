// Package stats implements the statistics collector (C9): atomic
// per-field counters updated from the hot path, a mutex-guarded
// snapshot for consistent multi-field reads, and an E-Model
// (ITU-T G.107, simplified default-parameter form) R-factor/MOS
// estimate derived from the snapshot rather than recomputed per packet.
package stats
