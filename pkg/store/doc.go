/*
Package store is a local SQLite-backed cache for the TabSynth SDK.

Generator handles and downloaded synthetic datasets live on the platform;
this cache keeps a copy of the handles, their training configs, and any
materialized rows so CLI sessions can inspect or export past results without
re-downloading them.
*/
package store
