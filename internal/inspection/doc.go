// Package inspection implements item resolution, replicate evaluation,
// and progress tracking for quality inspections.
//
// Two asymmetric defaults are deliberate and must stay distinct:
//
//   - MissingContextPolicy = PassThrough: a scalar submission for a
//     (powder, lot) with no active inspection and no prior result row
//     has no specification context and evaluates to PASS.
//   - MissingBucketPolicy = FailClosed: a mesh bucket required by the
//     particle-size specification but absent from the submission is
//     recorded as FAIL with null values.
package inspection
