// Package model provides the canonical type definitions for the sequencing
// engine.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal. This ensures the model remains
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Rule condition and action vocabularies are closed string enums with
//     per-rule-set validity tables, so evaluator switches can be exhaustive
//     and unknown variants are rejected at load time, never silently ignored.
//   - Normalized measures are the only floating point values in the model and
//     are clamped to [-1.0, 1.0]; canonical serialization renders them with
//     fixed precision so snapshot hashes stay deterministic.
//   - All JSON tags use snake_case.
package model
