package ratelimit

import "strings"

// KeyForRequest builds a limiter key for one route and client address.
func KeyForRequest(route, clientIP string) string {
	route = strings.TrimSpace(route)
	clientIP = strings.TrimSpace(clientIP)
	if route == "" || clientIP == "" {
		return ""
	}
	return "ip:" + clientIP + ":r:" + route
}
