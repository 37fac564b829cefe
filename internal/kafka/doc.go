// Package kafka connects camera pipelines to Kafka: detection frames are
// consumed from one topic and recorded events are published to another.
package kafka
