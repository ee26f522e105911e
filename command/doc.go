// Package command executes validated system commands with output caps
// and timeouts. Policy decisions (blocklists, shell metacharacter
// rejection) happen in the validate package before a command ever
// reaches the Runner.
package command
