// package tracker owns the set of tracked resources.
//
// A resource is tracked while it is cached or has a download or removal in flight. The [Tracker]
// deduplicates start requests, reconciles executor state reports against the tracked set, notifies
// listeners after every change and hands a snapshot of the set to an asynchronous writer.
package tracker
