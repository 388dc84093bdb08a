// Package preflight provides readiness checks for the external programs and
// filesystem paths a pipeline run depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before launching any stage. If a check
//     fails, the run aborts instead of wasting hours on a doomed experiment.
//   - The CLI "reidpipe preflight" command uses the same checks to display
//     environment health, plus an accelerator probe for context.
package preflight
