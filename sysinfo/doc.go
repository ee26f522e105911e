// Package sysinfo collects host information (OS, CPU, memory, disk) for
// the system_info tool. Collection is deduplicated across concurrent
// callers and cached with a short TTL.
package sysinfo
