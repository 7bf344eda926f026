package extractor

// promptTemplate 字段顺序、(empty) 占位和日期格式是持久化按位置解析的前提，不能改动
const promptTemplate = "Please respond only with one line, comma separated answers. " +
	"Skim this email, and give me the information in this order: company, " +
	"position (if there is a comma in this field, omit it), interview type, " +
	"previous interview, result of the interview, interviewer(s), submission date, " +
	"and recent date. If there are any missing fields, please fill with (empty). " +
	"For any date, please format in the form of MM-DD-YYYY: "

// BuildPrompt 把清洗后的正文原样拼接到指令后面
func BuildPrompt(cleanBody string) string {
	return promptTemplate + cleanBody
}
