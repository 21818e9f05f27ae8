// Package storage provides blob storage for watermarking inputs and outputs.
package storage
