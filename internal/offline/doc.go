// package offline wires the offline cache together.
//
// [Manager] is constructed once per process and owns the content index, the fetch backend,
// the executor with its pending-action journal and the tracker with its tracked-actions file.
// Callers pass the Manager to every collaborator instead of reaching for a global.
package offline
