// Package timeline derives summary statistics from milestone records.
package timeline
