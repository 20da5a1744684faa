//go:build nocontentprotection

package route

const contentProtectionEnabled = false
