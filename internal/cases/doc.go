// Package cases holds the VOICEVOX CORE end-to-end scenarios. Importing it
// registers every scenario with harness.DefaultRegistry.
//
// Each scenario acquires its handles through ExecEnv.Scope, so they are
// released in reverse acquisition order whether the scenario succeeds or
// stops at the first unexpected result code.
package cases
