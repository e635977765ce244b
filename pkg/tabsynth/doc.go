/*
Package tabsynth is a Go client for the TabSynth synthetic-data platform.

It covers the full generator lifecycle: train a Generator on tabular data,
probe it for small (optionally seed-conditioned) samples, request larger
synthetic datasets that are materialized on demand, and manage generators
(list, fetch, delete, export, import).

Training and large-scale generation are asynchronous jobs on the platform;
the client polls them to completion by default and exposes the start/wait
halves separately for callers that want to manage jobs themselves.
*/
package tabsynth
