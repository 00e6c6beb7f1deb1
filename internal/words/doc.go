// Package words generates short random adjective and noun pairs.
package words
