package broker

// diagnostics snapshots the current time and every queue's contents and
// next-transfer-expected deadline, partitioned into transient vs
// permanent by membership in the transient registry, per §4.6.
func (b *Broker) diagnostics() DiagnosticsResp {
	snapshot := b.Directory.Snapshot()
	queues := make([]QueueDiagnostics, 0, len(snapshot))
	for name, q := range snapshot {
		queues = append(queues, QueueDiagnostics{
			Name:                 name,
			Transient:            b.transient.IsTransient(name),
			Contents:             q.Contents(),
			NextTransferExpected: q.NextTransferExpected(),
		})
	}
	return DiagnosticsResp{Time: b.clock.Now(), Queues: queues}
}
