// Package viz renders simulation results in the terminal.
//
//   - [SpeciesChart]: asciigraph line chart of the four compartments
//   - [Summary]: per-species metrics and solver stats
//   - [Browser]: Bubble Tea program paging through the species of a run
//
// # Key Bindings
//
//	←/→ h/l  Previous/next species
//	g/G      First/last species
//	s        Toggle the summary panel
//	t        Cycle color themes
//	q        Quit
package viz
