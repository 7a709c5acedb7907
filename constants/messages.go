package constants

var MESSAGES_EN_MAP = map[string]string{
	"phase_idle":          "Ready",
	"phase_capturing":     "Capturing photo",
	"phase_uploading":     "Uploading photo",
	"phase_processing":    "Analyzing skin",
	"phase_result_ready":  "Diagnosis ready",
	"phase_failed":        "Diagnosis failed",
	"camera_unbound":      "camera off",
	"camera_bound":        "camera on",
	"camera_denied":       "Camera access denied. Grant access and type 'grant', or pick a photo.",
	"camera_error":        "camera error",
	"busy":                "A diagnosis is already running",
	"result_saved":        "Result saved to",
	"advice":              "Care notes",
	"help":                "commands: capture | pick <path> | switch | dismiss | retake | proceed | grant | hide | show | status | quit",
	"unknown_command":     "Unknown command",
	"no_devices":          "No devices found",
	"device_list":         "Attached devices",
	"performance_metrics": "Performance",
	"total_time":          "Total time",

	"error_permission_denied": "Camera permission denied",
	"error_camera_error":      "Camera error",
	"error_source_error":      "Cannot read image",
	"error_timeout":           "The diagnosis service timed out",
	"error_network_error":     "Network error, check your connection",
	"error_server_error":      "Server error",
	"error_decode_error":      "Could not decode the processed image",
}

var MESSAGES_ZH_MAP = map[string]string{
	"phase_idle":          "就绪",
	"phase_capturing":     "正在拍照",
	"phase_uploading":     "正在上传照片",
	"phase_processing":    "正在分析皮肤",
	"phase_result_ready":  "诊断完成",
	"phase_failed":        "诊断失败",
	"camera_unbound":      "相机未开启",
	"camera_bound":        "相机已开启",
	"camera_denied":       "相机权限被拒绝。授权后输入 'grant'，或从相册选择照片。",
	"camera_error":        "相机错误",
	"busy":                "已有诊断正在进行",
	"result_saved":        "结果已保存到",
	"advice":              "护理建议",
	"help":                "命令: capture | pick <路径> | switch | dismiss | retake | proceed | grant | hide | show | status | quit",
	"unknown_command":     "未知命令",
	"no_devices":          "未找到设备",
	"device_list":         "已连接设备",
	"performance_metrics": "性能指标",
	"total_time":          "总耗时",

	"error_permission_denied": "相机权限被拒绝",
	"error_camera_error":      "相机错误",
	"error_source_error":      "无法读取图片",
	"error_timeout":           "诊断服务超时",
	"error_network_error":     "网络错误，请检查连接",
	"error_server_error":      "服务器错误",
	"error_decode_error":      "无法解码处理后的图片",
}
