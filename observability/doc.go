// Package observability provides OpenTelemetry metrics and tracing for the
// process runtime.
//
// Instruments and spans use the global providers, which are no-ops until
// InitMeter and InitTracer install exporting ones:
//
//	mp, err := observability.InitMeter(ctx, &metricsCfg)
//	defer mp.Shutdown(ctx)
//	tp, err := observability.InitTracer(ctx, &tracingCfg)
//	defer tp.Shutdown(ctx)
//
//	observability.Default().RecordSpawn(ctx, observability.OutcomeOK)
//	ctx, span := observability.StartSpan(ctx, observability.SpanProgramRun)
//	defer span.End()
package observability
