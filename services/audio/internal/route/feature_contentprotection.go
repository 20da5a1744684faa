//go:build !nocontentprotection

package route

const contentProtectionEnabled = true
