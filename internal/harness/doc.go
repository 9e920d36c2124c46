// Package harness runs conformance scenarios: YAML files that name a CUE
// program, add initial facts, and state the expected outcome. Scenario
// results compare against golden files, so the rendered model of every
// covered program is pinned byte for byte.
package harness
