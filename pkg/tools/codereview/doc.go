// Package codereview provides a small static code-review workflow: four
// tools that extract functions, score complexity, detect issues and suggest
// improvements, looping until a quality threshold or an iteration cap.
package codereview
