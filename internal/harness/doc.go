// Package harness runs VOICEVOX CORE scenarios end to end.
//
// A scenario is a Case registered under a unique tag. The Runner starts one
// child process per scenario; the child (Executor.Main) loads the library
// under test, runs the case's native calls, releases every handle in reverse
// acquisition order and writes a Report. The parent normalizes the child's
// stdout and stderr and hands them, with the exit status, to the case's
// assertion.
//
// A failed scenario is reported by stage:
//
//   - load: unknown tag, bad parameters, library missing, symbol missing, ABI mismatch
//   - execution: unexpected result code, handle leak or double release, panic
//   - capture: the child could not be started or did not report
//   - assertion: output or exit status differs from the snapshot
//
// # Suite Format
//
// Suites are YAML files:
//
//	name: smoke
//	description: "Scenarios that need only the sample model"
//	parallel: 2
//	fail_fast: false
//	timeout: 2m
//	scenarios:
//	  - global_info
//	  - type: user_dict_load
//	    style_id: 0
//
// A scenario entry is either a bare tag or a mapping whose "type" key is the
// tag; the other keys are the scenario's parameters.
//
// # Child Process
//
// The runner passes everything through the environment (EnvCase, EnvLib,
// EnvReport, EnvFixtures, EnvVersionConstraint). Any binary whose main calls
// Executor.Main with the same registry can serve as the child; vvharness
// uses its hidden exec-case command.
package harness
