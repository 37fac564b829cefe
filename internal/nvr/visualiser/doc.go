// Package visualiser renders confirmed track trajectories and zone
// outlines for one camera, as an interactive go-echarts page or a static
// gonum/plot PNG. Image coordinates are used throughout, so the Y axis
// grows downwards.
package visualiser
