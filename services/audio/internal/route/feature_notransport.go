//go:build notransport

package route

const transportEnabled = false
