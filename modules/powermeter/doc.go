// Package powermeter provides the "powermeter" component. Once activated it
// samples battery discharge power from a power-supply directory (files
// current_now in µA and voltage_now in µV) at a fixed rate into a bounded
// buffer of milliwatt readings.
//
// Readings are kept as uint16 milliwatts, so the buffer holds BufferSize/2
// samples. Recording stops when the buffer is full. A non-negative current
// means the device is charging and is recorded as 0.
package powermeter
