/*
Package tabular provides a minimal in-memory representation of tabular
datasets (rows by named columns) along with CSV encoding and remote fetching.

It is the data interchange type for the TabSynth SDK: training data, seed
tables, and synthetic results all travel as *tabular.Table. Cells are plain
strings; type interpretation is deferred to the platform's encoding inference
or to consumers such as package report.
*/
package tabular
