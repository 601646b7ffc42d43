// Package oracle implements the prediction agent: time-series forecasting,
// categorical classification and anomaly detection over a registry of named
// models, with bounded prediction history and labeled-sample backtesting.
//
// Confidence and severity are always derived from measurable properties of
// the input (residual variance for forecasts, distance from the learned
// range for anomaly checks) so that anomalous inputs score differently from
// normal ones.
package oracle
